// Package playlist writes search results as PLS playlists.
package playlist

import (
	"bufio"
	"fmt"
	"io"

	"github.com/himanishpuri/ModLibrary/pkg/utils"
)

// Item is one playlist entry. Path uses forward slashes; it is written in
// the platform's native form.
type Item struct {
	Path  string
	Title string
}

// WritePLS writes items as a 1-indexed [playlist] section.
func WritePLS(w io.Writer, items []Item) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "[playlist]")
	fmt.Fprintf(bw, "numberofentries=%d\n", len(items))
	for i, it := range items {
		n := i + 1
		fmt.Fprintf(bw, "file%d=%s\n", n, utils.NativePath(it.Path))
		fmt.Fprintf(bw, "title%d=%s\n", n, it.Title)
	}
	return bw.Flush()
}
