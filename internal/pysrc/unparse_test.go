package pysrc_test

import (
	"strings"
	"testing"

	"chronogate/internal/pysrc"
)

// canonical parses src and renders it back.
func canonical(t *testing.T, src string) string {
	t.Helper()
	mod, err := pysrc.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return pysrc.Unparse(mod)
}

// Canonical output must be a fixed point: rendering, reparsing, and
// rendering again yields the same text.
func TestUnparseFixedPoint(t *testing.T) {
	src := `import pychrono as chrono
import pychrono.irrlicht as irr

def setup(system, n=3, *extra, **options):
    bodies = [chrono.ChBodyEasyBox(0.1 * i, 0.2, 0.3) for i in range(n) if i != 2]
    for b in bodies:
        system.Add(b)
    return bodies

class Harness(Base):
    label = "demo"

    def step(self):
        try:
            self.system.DoStepDynamics(1e-3)
        except RuntimeError as err:
            print("step failed:", err)
        finally:
            self.t += 1

mass = {"box": 1.5, "sphere": 0.75}
names = [k for k in mass]
flag = True if mass["box"] > 1 else False
a, b = b, a
total = -mass["box"] + 2 ** 3 * 4
cb = lambda x: x * 2
with open("log.txt") as fh:
    fh.write(str(total))
while total > 0:
    total -= 1
else:
    print("done")
`
	first := canonical(t, src)
	second := canonical(t, first)
	if first != second {
		t.Errorf("unparse is not a fixed point:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestUnparseCanonicalSpacing(t *testing.T) {
	out := canonical(t, "x=1+2*3\n")
	if out != "x = 1 + 2 * 3\n" {
		t.Errorf("got %q", out)
	}
}

func TestUnparseKeepsExplicitParens(t *testing.T) {
	out := canonical(t, "y = (a + b) * c\n")
	if !strings.Contains(out, "(a + b) * c") {
		t.Errorf("parentheses lost: %q", out)
	}
}

func TestUnparseElifChain(t *testing.T) {
	src := "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n"
	out := canonical(t, src)
	if !strings.Contains(out, "elif b:") {
		t.Errorf("elif flattened away:\n%s", out)
	}
	if strings.Contains(out, "else:\n    if") {
		t.Errorf("elif rendered as nested else/if:\n%s", out)
	}
}

// Raw lines survive verbatim, including their suites.
func TestUnparseRawVerbatim(t *testing.T) {
	src := "x = chrono.Thing(1) ??\nwhile ???:\n    y = 1\n"
	out := canonical(t, src)
	if !strings.Contains(out, "x = chrono.Thing(1) ??\n") {
		t.Errorf("raw line mangled:\n%s", out)
	}
	if !strings.Contains(out, "while ???:\n    y = 1\n") {
		t.Errorf("raw suite mangled:\n%s", out)
	}
}

func TestUnparseEmptySuiteGetsPass(t *testing.T) {
	mod := &pysrc.Module{Body: []pysrc.Stmt{
		&pysrc.IfStmt{Test: &pysrc.NameExpr{ID: "ready"}},
	}}
	out := pysrc.Unparse(mod)
	if out != "if ready:\n    pass\n" {
		t.Errorf("got %q", out)
	}
}

func TestUnparseSingleElementTuple(t *testing.T) {
	out := canonical(t, "t = (1,)\n")
	if !strings.Contains(out, "(1,)") {
		t.Errorf("trailing comma lost: %q", out)
	}
}
