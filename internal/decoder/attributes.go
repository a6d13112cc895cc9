package decoder

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// ParseAttributes extracts the attribute codes from an Arca attribute blob,
// e.g. <rows><row Cd_AR="X" attributo="1022"/><row attributo="1047"/></rows>.
// Codes are returned in document order. An empty or malformed blob yields none.
func ParseAttributes(blob string) []int {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil
	}

	var ids []int
	dec := xml.NewDecoder(strings.NewReader(blob))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return ids
		}
		if err != nil {
			return nil
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "row") {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local != "attributo" {
				continue
			}
			if id, err := strconv.Atoi(strings.TrimSpace(attr.Value)); err == nil {
				ids = append(ids, id)
			}
		}
	}
}
