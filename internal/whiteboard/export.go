package whiteboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

// ExportFormat selects the output encoding of a canvas export.
type ExportFormat string

const (
	FormatSVG ExportFormat = "svg"
	FormatPNG ExportFormat = "png"
)

var ErrUnsupportedFormat = fmt.Errorf("unsupported export format")

// Export is a rendered canvas ready to be sent to the client.
type Export struct {
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"contentType"`
	Data        []byte       `json:"data"`
}

// ExportCanvas renders the live canvas in the requested format and
// dimensions; width or height of zero or less falls back to the configured
// defaults. SVG is a full vector rendering; PNG rendering needs a raster
// pipeline this service does not carry, so it returns the document metadata
// a downstream renderer consumes.
func (s *Service) ExportCanvas(ctx context.Context, whiteboardID string, format ExportFormat, width, height int) (*Export, error) {
	doc, err := s.gateway.LoadCanvas(ctx, whiteboardID)
	if err != nil {
		return nil, err
	}

	if width <= 0 {
		width = s.cfg.ExportWidth
	}
	if height <= 0 {
		height = s.cfg.ExportHeight
	}

	switch format {
	case FormatSVG:
		return &Export{
			Format:      FormatSVG,
			ContentType: "image/svg+xml",
			Data:        []byte(renderSVG(doc, width, height)),
		}, nil
	case FormatPNG:
		meta, err := json.Marshal(map[string]any{
			"whiteboardId": doc.WhiteboardID,
			"width":        width,
			"height":       height,
			"version":      doc.Version,
			"elementCount": len(doc.Elements),
			"background":   doc.Background,
		})
		if err != nil {
			return nil, err
		}
		return &Export{
			Format:      FormatPNG,
			ContentType: "application/json",
			Data:        meta,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func renderSVG(doc *model.CanvasDocument, width, height int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	b.WriteByte('\n')
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, escapeXML(doc.Background))
	b.WriteByte('\n')

	for _, el := range doc.Elements {
		switch el.Kind() {
		case "rectangle":
			fmt.Fprintf(&b, `<rect x="%g" y="%g" width="%g" height="%g" fill="%s" stroke="%s" stroke-width="%g"/>`,
				num(el, "x"), num(el, "y"), num(el, "width"), num(el, "height"),
				color(el, "fill", "none"), color(el, "stroke", "#000000"), strokeWidth(el))
		case "circle":
			fmt.Fprintf(&b, `<circle cx="%g" cy="%g" r="%g" fill="%s" stroke="%s" stroke-width="%g"/>`,
				num(el, "cx"), num(el, "cy"), num(el, "r"),
				color(el, "fill", "none"), color(el, "stroke", "#000000"), strokeWidth(el))
		case "text":
			fmt.Fprintf(&b, `<text x="%g" y="%g" font-size="%g" fill="%s">%s</text>`,
				num(el, "x"), num(el, "y"), numOr(el, "fontSize", 16),
				color(el, "fill", "#000000"), escapeXML(str(el, "text")))
		case "polygon":
			fmt.Fprintf(&b, `<polygon points="%s" fill="%s" stroke="%s" stroke-width="%g"/>`,
				pointList(el), color(el, "fill", "none"), color(el, "stroke", "#000000"), strokeWidth(el))
		case "freehand":
			fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="%g" stroke-linecap="round"/>`,
				pathData(el), color(el, "stroke", "#000000"), strokeWidth(el))
		}
		b.WriteByte('\n')
	}

	b.WriteString("</svg>\n")
	return b.String()
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

func num(el model.Element, key string) float64 {
	return numOr(el, key, 0)
}

func numOr(el model.Element, key string, fallback float64) float64 {
	switch v := el[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err == nil {
			return f
		}
	}
	return fallback
}

func str(el model.Element, key string) string {
	if v, ok := el[key].(string); ok {
		return v
	}
	return ""
}

func color(el model.Element, key, fallback string) string {
	if v := str(el, key); v != "" {
		return escapeXML(v)
	}
	return fallback
}

func strokeWidth(el model.Element) float64 {
	return numOr(el, "strokeWidth", 2)
}

// pointList formats a polygon's points as the SVG "x,y x,y" list.
func pointList(el model.Element) string {
	points, ok := el["points"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(points))
	for _, p := range points {
		pt, ok := p.(map[string]any)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%g,%g", asFloat(pt["x"]), asFloat(pt["y"])))
	}
	return strings.Join(parts, " ")
}

// pathData turns a freehand point sequence into an SVG path.
func pathData(el model.Element) string {
	points, ok := el["points"].([]any)
	if !ok || len(points) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range points {
		pt, ok := p.(map[string]any)
		if !ok {
			continue
		}
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&b, "%s%g %g ", cmd, asFloat(pt["x"]), asFloat(pt["y"]))
	}
	return strings.TrimSpace(b.String())
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
