package note

import "strings"

// utf8BOM is prepended to exports so Windows editors detect the encoding.
const utf8BOM = "\ufeff"

// filenameReplacer strips characters that are invalid in filenames on at
// least one supported platform.
var filenameReplacer = strings.NewReplacer(
	`\`, "_", `/`, "_", `:`, "_", `*`, "_", `?`, "_", `"`, "_", `<`, "_", `>`, "_", `|`, "_",
)

// ExportFilename derives the download filename from a note title.
func ExportFilename(title string) string {
	if title == "" {
		title = UntitledTitle
	}
	return filenameReplacer.Replace(title) + ".md"
}

// Export returns the download filename and markdown payload for a note.
// Gated notes must be unlocked first; ErrLocked otherwise.
func (s *Store) Export(id string) (filename string, data []byte, err error) {
	n, err := s.Get(id)
	if err != nil {
		return "", nil, err
	}
	return ExportFilename(n.Title), []byte(utf8BOM + n.Content), nil
}
