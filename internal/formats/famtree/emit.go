package famtree

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bcowgill/d3-family-tree/core/ir"
)

// EmitNative writes tree back into the line grammar, one record per line.
// A birth year is always the first optional field, so the output decodes to
// the same records. Married slots keep their numbers so gaps survive.
// Children are not part of the grammar and are left to child linking.
func (h *Handler) EmitNative(w io.Writer, tree *ir.Tree) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s %s\n", FormatName, tree.ID)
	if tree.RunID != "" {
		fmt.Fprintf(bw, "# run %s\n", tree.RunID)
	}
	for _, r := range tree.People {
		bw.WriteString(FormatRecord(r))
		bw.WriteByte('\n')
	}
	if len(tree.Unresolved) > 0 {
		fmt.Fprintf(bw, "# unresolved: %s\n", strings.Join(tree.Unresolved, ", "))
	}
	return bw.Flush()
}

// FormatRecord renders one record as a line.
func FormatRecord(r *ir.Record) string {
	fields := []string{r.ID, r.Sex, r.FullName}
	if r.Born != nil {
		fields = append(fields, fmt.Sprintf("b:%d", *r.Born))
	}
	if r.Mother != "" {
		fields = append(fields, "pm:"+r.Mother)
	}
	if r.Father != "" {
		fields = append(fields, "pf:"+r.Father)
	}
	if r.ChildNumber > 0 {
		fields = append(fields, fmt.Sprintf("cn:%d", r.ChildNumber))
	}
	for i, id := range r.Married {
		if id != "" {
			fields = append(fields, fmt.Sprintf("m:%d:%s", i+1, id))
		}
	}
	if r.Died != nil {
		fields = append(fields, fmt.Sprintf("d:%d", *r.Died))
	}
	return strings.Join(fields, ";")
}
