// Package feed fetches and parses NASA's public ISS OEM ephemeris and keeps a
// telemetry store refreshed from it.
package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/iss-tracker/core"
)

// DefaultFeedURL is NASA's public ISS trajectory feed (CCSDS OEM, J2000 frame).
const DefaultFeedURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.xml"

// internal XML shapes – keep them unexported so we’re free to evolve them.
type stateVectorXML struct {
	Epoch string  `xml:"EPOCH"`
	X     float64 `xml:"X"`
	Y     float64 `xml:"Y"`
	Z     float64 `xml:"Z"`
	XDot  float64 `xml:"X_DOT"`
	YDot  float64 `xml:"Y_DOT"`
	ZDot  float64 `xml:"Z_DOT"`
}

// propertyListXML captures flat tag→text elements such as <header> and
// <metadata> without pinning the exact set of child tags the feed emits.
type propertyListXML struct {
	Entries []propertyXML `xml:",any"`
}

type propertyXML struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// ParseOEM decodes an OEM ephemeris document from r into a Dataset. It walks
// the token stream rather than mirroring the full CCSDS element tree, so
// <stateVector>, <header>, <metadata>, and COMMENT elements are picked up at
// any nesting depth. Vectors are returned in document order; sorting and
// duplicate detection are the store's job.
func ParseOEM(r io.Reader) (core.Dataset, error) {
	ds := core.Dataset{
		Header:   map[string]string{},
		Metadata: map[string]string{},
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Dataset{}, fmt.Errorf("ParseOEM: malformed document: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "stateVector":
			var wire stateVectorXML
			if err := dec.DecodeElement(&wire, &se); err != nil {
				return core.Dataset{}, fmt.Errorf("ParseOEM: state vector %d: %w", len(ds.Vectors)+1, err)
			}
			sv, err := wire.toStateVector()
			if err != nil {
				return core.Dataset{}, fmt.Errorf("ParseOEM: state vector %d: %w", len(ds.Vectors)+1, err)
			}
			ds.Vectors = append(ds.Vectors, sv)

		case "header":
			if err := decodeProperties(dec, &se, ds.Header, &ds.Comments); err != nil {
				return core.Dataset{}, fmt.Errorf("ParseOEM: header: %w", err)
			}

		case "metadata":
			if err := decodeProperties(dec, &se, ds.Metadata, &ds.Comments); err != nil {
				return core.Dataset{}, fmt.Errorf("ParseOEM: metadata: %w", err)
			}

		case "COMMENT", "comment":
			var text string
			if err := dec.DecodeElement(&text, &se); err != nil {
				return core.Dataset{}, fmt.Errorf("ParseOEM: comment: %w", err)
			}
			ds.Comments = append(ds.Comments, splitCommentLines(text)...)
		}
	}

	if len(ds.Vectors) == 0 {
		return core.Dataset{}, fmt.Errorf("ParseOEM: %w", core.ErrEmptyDataset)
	}
	return ds, nil
}

func (w stateVectorXML) toStateVector() (core.StateVector, error) {
	epoch, err := core.ParseEpoch(w.Epoch)
	if err != nil {
		return core.StateVector{}, err
	}
	return core.StateVector{
		Epoch:    epoch,
		Position: core.Vec3{X: w.X, Y: w.Y, Z: w.Z},
		Velocity: core.Vec3{X: w.XDot, Y: w.YDot, Z: w.ZDot},
	}, nil
}

// decodeProperties flattens one tag→text element into dst. COMMENT children
// are routed to comments instead so they end up in one place.
func decodeProperties(dec *xml.Decoder, se *xml.StartElement, dst map[string]string, comments *[]string) error {
	var pl propertyListXML
	if err := dec.DecodeElement(&pl, se); err != nil {
		return err
	}
	for _, entry := range pl.Entries {
		if entry.XMLName.Local == "COMMENT" {
			*comments = append(*comments, splitCommentLines(entry.Value)...)
			continue
		}
		dst[entry.XMLName.Local] = strings.TrimSpace(entry.Value)
	}
	return nil
}

// splitCommentLines handles both single-line COMMENT elements and blocks whose
// text carries several newline-separated lines.
func splitCommentLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
