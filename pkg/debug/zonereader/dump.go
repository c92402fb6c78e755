package zonereader

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText prints every zone: control word, fingerprint and extent table.
func (s *Snapshot) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "database %s, %d zones\n", s.DB, len(s.Zones))
	for _, z := range s.Zones {
		c := z.Control
		fmt.Fprintf(tw, "\nzone %s\tkey %016o\tfree %d\textents %d\tfingerprint %08x\n",
			z.File, z.Header, c.FreeWords(), c.Count, z.Fingerprint)
		if c.Locked {
			fmt.Fprintf(tw, "  locked\n")
		}
		for _, d := range z.Extents {
			fmt.Fprintf(tw, "  id %d\tstart %d\tlen %d\tnext %s\n", d.ID, d.Start, d.Length, d.Next)
		}
	}
	return tw.Flush()
}
