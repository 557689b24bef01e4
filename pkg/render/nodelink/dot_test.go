package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/nary/pkg/dag"
)

func tree(t *testing.T) *dag.DAG {
	t.Helper()
	g := dag.New(nil)
	nodes := []dag.Node{
		{ID: "app@1.0.0", Meta: dag.Metadata{"root": true, "dir": "."}},
		{ID: "koa-ejs@4.1.2", Meta: dag.Metadata{"dir": "node_modules/koa-ejs", "missing": []string{"ejs"}}},
		{ID: "debug@1.2.3", Meta: dag.Metadata{"dir": "node_modules/koa-ejs/node_modules/debug"}},
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	_ = g.AddEdge(dag.Edge{From: "koa-ejs@4.1.2", To: "app@1.0.0", Meta: dag.Metadata{"constraint": "^4.1.0"}})
	_ = g.AddEdge(dag.Edge{From: "debug@1.2.3", To: "koa-ejs@4.1.2", Meta: dag.Metadata{"constraint": "^1.0.0"}})
	return g
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(tree(t), Options{})

	for _, want := range []string{
		`"app@1.0.0" -> "koa-ejs@4.1.2";`,
		`"koa-ejs@4.1.2" -> "debug@1.2.3";`,
		`"app@1.0.0" [label="app@1.0.0", penwidth=2`,
		`color=red`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "^4.1.0") {
		t.Error("constraints should only appear in detailed mode")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(tree(t), Options{Detailed: true})

	for _, want := range []string{
		`[label="^4.1.0"]`,
		`node_modules/koa-ejs\nmissing: ejs`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(tree(t), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG() error: %v", err)
	}
	s := string(svg)
	if !strings.Contains(s, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0`) {
		t.Errorf("svg tag not normalized: %.200s", s)
	}
	if !strings.Contains(s, "koa-ejs@4.1.2") {
		t.Error("node label missing from SVG")
	}
}

func TestRenderSVGInvalid(t *testing.T) {
	if _, err := RenderSVG(context.Background(), "digraph {"); err == nil {
		t.Error("RenderSVG() should fail on invalid DOT")
	}
}
