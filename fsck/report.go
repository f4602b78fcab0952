package fsck

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/hupe1980/sharkfs/layout"
)

// Finding is one structural problem discovered in an image.
type Finding struct {
	// Code identifies the class of problem: bad-magic, size-mismatch,
	// out-of-range, cycle, cross-list, bad-tag, bad-backlink,
	// bad-name, chain-length or orphan.
	Code string `json:"code"`
	// Block is the block the finding concerns; 0 refers to the
	// superblock.
	Block layout.BlockID `json:"block"`
	// Detail is a human-readable description.
	Detail string `json:"detail"`
}

// Report is the outcome of checking one image.
type Report struct {
	Path       string    `json:"path,omitempty"`
	NBlocks    uint32    `json:"n_blocks"`
	Files      int       `json:"files"`
	FreeBlocks uint32    `json:"free_blocks"`
	Findings   []Finding `json:"findings"`
}

// Clean reports whether the image passed every check.
func (r *Report) Clean() bool { return len(r.Findings) == 0 }

// WriteJSON writes the report as a single JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes a line per finding followed by a one-line summary.
func (r *Report) WriteText(w io.Writer) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintf(w, "%s: block %d: %s\n", f.Code, f.Block, f.Detail); err != nil {
			return err
		}
	}
	verdict := "clean"
	if !r.Clean() {
		verdict = fmt.Sprintf("%d finding(s)", len(r.Findings))
	}
	_, err := fmt.Fprintf(w, "%s: %d blocks, %d file(s), %d free block(s): %s\n",
		r.Path, r.NBlocks, r.Files, r.FreeBlocks, verdict)
	return err
}
