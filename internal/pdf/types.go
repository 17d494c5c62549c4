package pdf

// Document is the extracted content of one PDF, pages in document order
type Document struct {
	Info  Info   `json:"info"`
	Pages []Page `json:"pages"`
}

// Info is the container-level metadata read from the trailer Info dictionary
type Info struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	Version      string `json:"version,omitempty"`
	PageCount    int    `json:"page_count"`
}

// Page is the reading-order text of one page and the tables detected on it.
// Text lines are separated by "\n" and cells within a line by "\t". A blank
// line marks a vertical gap larger than normal line spacing.
type Page struct {
	Index  int     `json:"index"`
	Text   string  `json:"text"`
	Tables []Table `json:"tables,omitempty"`
}

// Table is a grid of cell strings. Every row has the same number of columns;
// a missing cell is the empty string.
type Table struct {
	Rows [][]string `json:"rows"`
}

// Glyph is one positioned text run as reported by a page content stream.
// Coordinates are PDF user space, so Y grows upward.
type Glyph struct {
	X        float64
	Y        float64
	W        float64
	FontSize float64
	S        string
}

// ContainerInfo is what the structural check learned about the file
type ContainerInfo struct {
	Checked   bool   `json:"checked"`
	Version   string `json:"version,omitempty"`
	PageCount int    `json:"page_count"`
}

// Extractor turns raw PDF bytes into pages of text and raw tables
type Extractor interface {
	Extract(data []byte) (*Document, error)
}
