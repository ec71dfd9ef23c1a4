// Package report renders gate results as markdown documents carrying YAML
// frontmatter between --- delimiters. Reports are the audit trail: each one
// records the script's digest, the policy it was judged against, and every
// finding, in a shape both humans and tooling can read back.
package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"chronogate/internal/gate"
)

// Meta is the frontmatter block of a report.
type Meta struct {
	Tool         string `yaml:"tool"`
	Script       string `yaml:"script"`
	ScriptSHA256 string `yaml:"script_sha256"`
	Policy       string `yaml:"policy,omitempty"`
	GeneratedAt  string `yaml:"generated_at"`
	OK           bool   `yaml:"ok"`
	Violations   int    `yaml:"violations"`
	Renames      int    `yaml:"renames"`
}

// Render produces the full markdown report for one gate result. scriptName
// and policyPath are recorded as provenance; src is hashed, never embedded.
func Render(scriptName, src, policyPath string, res *gate.Result, now time.Time) ([]byte, error) {
	sum := sha256.Sum256([]byte(src))
	meta := Meta{
		Tool:         "chronogate",
		Script:       scriptName,
		ScriptSHA256: hex.EncodeToString(sum[:]),
		Policy:       policyPath,
		GeneratedAt:  now.UTC().Format(time.RFC3339),
		OK:           res.OK,
		Violations:   len(res.Violations),
		Renames:      len(res.Renames),
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "# Gate report: %s\n\n", scriptName)
	if len(res.Renames) > 0 {
		body.WriteString("## Renames\n\n")
		for _, r := range res.Renames {
			fmt.Fprintf(&body, "- %s `%s` -> `%s`\n", r.Kind, r.Old, r.New)
		}
		body.WriteString("\n")
	}
	if len(res.Violations) == 0 {
		body.WriteString("No violations.\n")
	} else {
		body.WriteString("## Violations\n\n")
		for _, v := range res.Violations {
			fmt.Fprintf(&body, "- **%s**: %s\n", v.Kind, v.Message)
		}
	}
	return write(meta, body.String())
}

// write marshals meta as YAML frontmatter and concatenates body.
func write(meta Meta, body string) ([]byte, error) {
	fm, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("report: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// Parse splits a report back into its metadata and markdown body. The
// document must begin with "---\n"; the closing "---" line ends the
// frontmatter block.
func Parse(data []byte) (Meta, string, error) {
	const delim = "---\n"
	var meta Meta
	if !bytes.HasPrefix(data, []byte(delim)) {
		return meta, "", fmt.Errorf("report: missing opening --- delimiter")
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		return meta, "", fmt.Errorf("report: missing closing --- delimiter")
	}
	if err := yaml.Unmarshal(rest[:idx], &meta); err != nil {
		return meta, "", fmt.Errorf("report: parse frontmatter: %w", err)
	}
	tail := rest[idx+4:]
	if len(tail) > 0 && tail[0] == '\n' {
		tail = tail[1:]
	}
	return meta, string(tail), nil
}
