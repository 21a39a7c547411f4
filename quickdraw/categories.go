package quickdraw

import (
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultCategoriesURL lists every drawable class of the QuickDraw dataset,
// one name per line.
const DefaultCategoriesURL = "https://raw.githubusercontent.com/googlecreativelab/quickdraw-dataset/master/categories.txt"

// Categories fetches the newline-delimited class list from url and returns it
// in canonical form: internal spaces replaced by underscores, deduplicated,
// sorted alphabetically. The sorted order is what assigns stable integer
// labels everywhere else in this package. An empty url means
// DefaultCategoriesURL.
func Categories(url string) ([]string, error) {
	if url == "" {
		url = DefaultCategoriesURL
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching category list from %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching category list from %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading category list from %s", url)
	}

	seen := make(map[string]bool)
	var names []string
	for _, line := range strings.Split(string(body), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		name = strings.ReplaceAll(name, " ", "_")
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.Errorf("category list at %s is empty", url)
	}
	sort.Strings(names)
	return names, nil
}
