package gpu

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormatInfo pairs a wgpu vertex format with its byte size.
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// wgslVertexFormatMap maps WGSL type names to their corresponding wgpu vertex format and byte size
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"i32":       {wgpu.VertexFormatSint32, 4},
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// lineCommentRegex strips // comments to end of line
	lineCommentRegex = regexp.MustCompile(`//[^\n]*`)
)

// parsedVertexField is one @location field of a vertex input struct.
type parsedVertexField struct {
	name     string
	typeName string
	location int
}

// parseVertexLayout extracts the interleaved vertex buffer layout from a WGSL
// vertex shader. It finds the first struct that is a pure vertex input (all
// fields carry @location, none carry @builtin) and converts its fields, in
// location order, into wgpu vertex attributes with accumulated offsets.
//
// Parameters:
//   - source: the raw WGSL vertex shader source
//
// Returns:
//   - []wgpu.VertexAttribute: the attributes in location order
//   - uint64: the interleaved stride in bytes
//   - error: an error if no vertex input struct or an unknown field type is found
func parseVertexLayout(source string) ([]wgpu.VertexAttribute, uint64, error) {
	cleaned := lineCommentRegex.ReplaceAllString(source, "")

	for _, match := range structBlockRegex.FindAllStringSubmatch(cleaned, -1) {
		fields, ok := parseVertexInputFields(match[2])
		if !ok {
			continue
		}

		sort.Slice(fields, func(i, j int) bool {
			return fields[i].location < fields[j].location
		})

		attributes := make([]wgpu.VertexAttribute, 0, len(fields))
		offset := uint64(0)
		for _, f := range fields {
			info, known := wgslVertexFormatMap[f.typeName]
			if !known {
				return nil, 0, fmt.Errorf("vertex input %s.%s has unsupported type %q", match[1], f.name, f.typeName)
			}
			attributes = append(attributes, wgpu.VertexAttribute{
				Format:         info.format,
				Offset:         offset,
				ShaderLocation: uint32(f.location),
			})
			offset += info.size
		}
		return attributes, offset, nil
	}

	return nil, 0, fmt.Errorf("no vertex input struct with @location fields found")
}

// parseVertexInputFields parses a struct body and reports whether it is a pure
// vertex input struct. Structs with @builtin fields or fields lacking
// @location are not vertex inputs.
func parseVertexInputFields(body string) ([]parsedVertexField, bool) {
	fields := make([]parsedVertexField, 0, 4)
	for _, line := range strings.Split(body, ",") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if builtinRegex.MatchString(line) {
			return nil, false
		}
		locMatch := locationRegex.FindStringSubmatch(line)
		if locMatch == nil {
			return nil, false
		}
		loc, err := strconv.Atoi(locMatch[1])
		if err != nil {
			return nil, false
		}
		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			return nil, false
		}
		fields = append(fields, parsedVertexField{
			name:     fm[1],
			typeName: strings.TrimSpace(fm[2]),
			location: loc,
		})
	}
	return fields, len(fields) > 0
}

// parseEntryPoint extracts the vertex or fragment entry point function name
// from WGSL source. Returns "main" if no matching annotation is found.
func parseEntryPoint(source string, vertex bool) string {
	cleaned := lineCommentRegex.ReplaceAllString(source, "")
	re := fragmentEntryRegex
	if vertex {
		re = vertexEntryRegex
	}
	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return "main"
}
