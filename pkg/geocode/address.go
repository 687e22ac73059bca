package geocode

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Address holds the parsed components of a street address.
type Address struct {
	Number     string `json:"number,omitempty"`
	PreDir     string `json:"pre_dir,omitempty"`
	StreetName string `json:"street_name,omitempty"`
	StreetType string `json:"street_type,omitempty"`
	PostDir    string `json:"post_dir,omitempty"`
	Unit       string `json:"unit,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Zip        string `json:"zip,omitempty"`
	Raw        string `json:"raw"`
}

// directionals maps spelled-out directions to their canonical abbreviations.
// Abbreviations map to themselves so normalization is idempotent.
var directionals = map[string]string{
	"NORTH": "N", "SOUTH": "S", "EAST": "E", "WEST": "W",
	"NORTHEAST": "NE", "NORTHWEST": "NW", "SOUTHEAST": "SE", "SOUTHWEST": "SW",
	"N": "N", "S": "S", "E": "E", "W": "W",
	"NE": "NE", "NW": "NW", "SE": "SE", "SW": "SW",
}

// streetTypes maps spelled-out street types to USPS-style abbreviations.
var streetTypes = map[string]string{
	"ALLEY": "ALY", "AVENUE": "AVE", "BOULEVARD": "BLVD", "CIRCLE": "CIR",
	"COURT": "CT", "DRIVE": "DR", "EXPRESSWAY": "EXPY", "HIGHWAY": "HWY",
	"LANE": "LN", "PARKWAY": "PKWY", "PIKE": "PIKE", "PLACE": "PL",
	"ROAD": "RD", "SQUARE": "SQ", "STREET": "ST", "TERRACE": "TER",
	"TRAIL": "TRL", "TURNPIKE": "TPKE", "WAY": "WAY",
	"ALY": "ALY", "AVE": "AVE", "BLVD": "BLVD", "CIR": "CIR", "CT": "CT",
	"DR": "DR", "EXPY": "EXPY", "HWY": "HWY", "LN": "LN", "PKWY": "PKWY",
	"PL": "PL", "RD": "RD", "SQ": "SQ", "ST": "ST", "TER": "TER",
	"TRL": "TRL", "TPKE": "TPKE",
}

// unitDesignators maps unit markers to a canonical form.
var unitDesignators = map[string]string{
	"APARTMENT": "APT", "APT": "APT", "SUITE": "STE", "STE": "STE",
	"UNIT": "UNIT", "#": "#",
}

// deaccent strips combining marks, folding accented characters to ASCII.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the canonical string form of a raw address. The result is
// deterministic and idempotent: Normalize(Normalize(s)) == Normalize(s). The
// normalized string is the cache and dedup key for all geocoding operations.
func Normalize(raw string) string {
	s, _, err := transform.String(deaccent, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToUpper(s)

	// Strip punctuation, keeping word separators and the unit marker.
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '#':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		if d, ok := directionals[tok]; ok {
			tokens[i] = d
			continue
		}
		if st, ok := streetTypes[tok]; ok {
			tokens[i] = st
			continue
		}
		if u, ok := unitDesignators[tok]; ok {
			tokens[i] = u
		}
	}

	return strings.Join(tokens, " ")
}

// Parse splits a raw address into components, best-effort. Comma-separated
// input is treated as "street, city, state zip"; the street part is then
// tokenized for number, directionals, street type, and unit.
func Parse(raw string) Address {
	addr := Address{Raw: raw}

	parts := strings.Split(raw, ",")
	street := strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		addr.City = strings.TrimSpace(Normalize(parts[1]))
	}
	if len(parts) > 2 {
		tail := strings.Fields(Normalize(strings.Join(parts[2:], " ")))
		for _, tok := range tail {
			switch {
			case isZip(tok):
				addr.Zip = tok
			case len(tok) == 2 && addr.State == "":
				addr.State = tok
			}
		}
	}

	tokens := strings.Fields(Normalize(street))
	i := 0
	if i < len(tokens) && isNumeric(tokens[i]) {
		addr.Number = tokens[i]
		i++
	}
	if i < len(tokens)-1 {
		if d, ok := directionals[tokens[i]]; ok {
			addr.PreDir = d
			i++
		}
	}

	// Scan the remainder for street type, post-direction, and unit; everything
	// before the street type is the street name.
	var nameTokens []string
	for ; i < len(tokens); i++ {
		tok := tokens[i]
		if u, ok := unitDesignators[tok]; ok {
			addr.Unit = u
			if i+1 < len(tokens) {
				addr.Unit = tokens[i+1]
				i++
			}
			continue
		}
		if st, ok := streetTypes[tok]; ok && addr.StreetType == "" && len(nameTokens) > 0 {
			addr.StreetType = st
			continue
		}
		if d, ok := directionals[tok]; ok && addr.StreetType != "" && addr.PostDir == "" {
			addr.PostDir = d
			continue
		}
		nameTokens = append(nameTokens, tok)
	}
	addr.StreetName = strings.Join(nameTokens, " ")

	return addr
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isZip(s string) bool {
	return len(s) == 5 && isNumeric(s)
}
