package addrtable

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"espnow-bridge/pkg/protocol"
)

const header = `
digraph G {
    graph [fontname = "monospace" inputscale=0];
    node [fontname = "courier new" shape=underline];
    edge [fontname = "courier new" len=3]
   bgcolor=transparent;
   splines=true
   layout=neato
`

// Graphviz describes the star between the upstream station and every node of
// the table. The node matching self is drawn in green.
func (t *Table) Graphviz(upstream, self protocol.Addr) string {
	var b strings.Builder
	b.WriteString(header)

	b.WriteString("# station\n")
	fmt.Fprintf(&b, "\"%s\" [shape=rectangle,style=\"rounded,bold\" color=\"#FFB0B0\" label=\"STATION\\n%s\" pos=\"0,0!\"]\n", upstream, upstream)

	b.WriteString("# nodes\n")
	for i, a := range t.addrs {
		if i == 0 {
			continue
		}
		color := "grey"
		if a == self {
			color = "green"
		}
		fmt.Fprintf(&b, "\"%s\" [color=%s label=\"#%d\\n%s\"]\n", a, color, i, a)
		fmt.Fprintf(&b, "\"%s\" -> \"%s\" [dir=both, color=%s]\n", upstream, a, color)
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderSVG renders a DOT description to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	g, err := graphviz.New(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Close()
	defer graph.Close()

	var buf bytes.Buffer
	if err := g.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render topology: %w", err)
	}
	return buf.Bytes(), nil
}
