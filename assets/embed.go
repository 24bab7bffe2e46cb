// assets/embed.go
//
// Embedded fallback word lists so the server can run without configured
// dictionary files. Production deployments point DICTIONARY_FILE and
// BINGOS_FILE at full lists; these defaults cover development and tests.

package assets

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed dictionary.txt bingos.txt
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToUpper(s))
	}
	return out, sc.Err()
}

// DictionaryList returns the embedded playable word list.
func DictionaryList() ([]string, error) {
	return readLines("dictionary.txt")
}

// BingosList returns the embedded 6-letter starting-word list.
func BingosList() ([]string, error) {
	return readLines("bingos.txt")
}
