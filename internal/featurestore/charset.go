package featurestore

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is assumed for DBF attributes when neither the config nor
// a .cpg sidecar names one.
const DefaultEncoding = "utf-8"

// lookupEncoding resolves a charset label (e.g. "windows-1252", "latin1").
func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "featurestore: unsupported charset %q", name)
	}
	return enc, nil
}

// encodingName returns the canonical label written to .cpg sidecars.
func encodingName(enc encoding.Encoding) string {
	if name, err := htmlindex.Name(enc); err == nil {
		return strings.ToUpper(name)
	}
	return "UTF-8"
}

// sidecarEncoding reads the .cpg file next to a shapefile, if present.
func sidecarEncoding(shpPath string) string {
	data, err := os.ReadFile(sidecarPath(shpPath, ".cpg"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func isUTF8(enc encoding.Encoding) bool {
	return enc == unicode.UTF8 || enc == encoding.Nop
}

func sidecarPath(shpPath, ext string) string {
	return strings.TrimSuffix(shpPath, ".shp") + ext
}
