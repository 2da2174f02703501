package webarchive

import (
	"fmt"
	"io"
)

// Walk calls fn for a and then, depth first, for every subframe archive
// below it. path holds the subframe indexes leading from a to the archive
// being visited; it is empty for a itself and is reused between calls.
// Walk stops at the first error fn returns and returns it.
func (a *Archive) Walk(fn func(path []int, a *Archive) error) error {
	return a.walk(nil, fn)
}

func (a *Archive) walk(path []int, fn func([]int, *Archive) error) error {
	if err := fn(path, a); err != nil {
		return err
	}
	for i, sub := range a.SubframeArchives {
		if err := sub.walk(append(path, i), fn); err != nil {
			return err
		}
	}
	return nil
}

// Resources returns every resource in the archive tree: the main resource,
// then the subresources, then the resources of each subframe in turn.
func (a *Archive) Resources() []*Resource {
	var out []*Resource
	_ = a.Walk(func(_ []int, a *Archive) error {
		out = append(out, &a.MainResource)
		for i := range a.Subresources {
			out = append(out, &a.Subresources[i])
		}
		return nil
	})
	return out
}

// ResourceCount returns the number of resources in the archive tree.
func (a *Archive) ResourceCount() int {
	n := 0
	_ = a.Walk(func(_ []int, a *Archive) error {
		n += 1 + len(a.Subresources)
		return nil
	})
	return n
}

// TotalSize returns the combined size of the data of every resource in the
// archive tree. Metadata and response objects are not counted.
func (a *Archive) TotalSize() int {
	size := 0
	for _, r := range a.Resources() {
		size += len(r.Data)
	}
	return size
}

// WriteList writes a summary of a and each of its subframes to w, one line
// per archive followed by one indented line per subresource.
func (a *Archive) WriteList(w io.Writer) error {
	return a.Walk(func(_ []int, a *Archive) error {
		main := &a.MainResource
		_, err := fmt.Fprintf(w, "WebArchive of %q (%q, %d bytes): %d %s, %d %s totalling %d bytes\n",
			main.URL, main.MIMEType, len(main.Data),
			len(a.Subresources), plural(len(a.Subresources), "subresource"),
			len(a.SubframeArchives), plural(len(a.SubframeArchives), "subframe archive"),
			a.TotalSize())
		if err != nil {
			return err
		}
		for _, r := range a.Subresources {
			if _, err := fmt.Fprintf(w, "  - %q (%q, %d bytes)\n", r.URL, r.MIMEType, len(r.Data)); err != nil {
				return err
			}
		}
		return nil
	})
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
