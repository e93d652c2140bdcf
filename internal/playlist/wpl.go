package playlist

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"smartlists/internal/filesystem"
)

// WPL structure based on Windows Media Player playlist format
type WPL struct {
	XMLName xml.Name `xml:"smil"`
	Head    WPLHead  `xml:"head"`
	Body    WPLBody  `xml:"body"`
}

type WPLHead struct {
	Title string    `xml:"title"`
	Meta  []WPLMeta `xml:"meta"`
}

type WPLMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type WPLBody struct {
	Seq WPLSeq `xml:"seq"`
}

type WPLSeq struct {
	Media []WPLMedia `xml:"media"`
}

type WPLMedia struct {
	Src string `xml:"src,attr"`
}

const generator = "smartlists"

// NewWPL builds a playlist document from media paths in play order.
func NewWPL(title string, paths []string) *WPL {
	w := &WPL{
		Head: WPLHead{
			Title: title,
			Meta: []WPLMeta{
				{Name: "Generator", Content: generator},
				{Name: "ItemCount", Content: strconv.Itoa(len(paths))},
			},
		},
	}
	for _, p := range paths {
		w.Body.Seq.Media = append(w.Body.Seq.Media, WPLMedia{Src: p})
	}
	return w
}

// Encode writes the document with the processing instruction WMP expects.
func (w *WPL) Encode(out io.Writer) error {
	if _, err := io.WriteString(out, "<?wpl version=\"1.0\"?>\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")
	if err := enc.Encode(w); err != nil {
		return err
	}
	_, err := io.WriteString(out, "\n")
	return err
}

// Paths returns the media sources in order.
func (w *WPL) Paths() []string {
	paths := make([]string, len(w.Body.Seq.Media))
	for i, m := range w.Body.Seq.Media {
		paths[i] = m.Src
	}
	return paths
}

// ReadWPL parses a WPL file.
func ReadWPL(path string) (*WPL, error) {
	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	var w WPL
	if err := xml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &w, nil
}
