package quickdraw

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultBitmapURL is the base URL of the per-category QuickDraw bitmap
// files. The remote files are named with spaces ("aircraft carrier.npy");
// locally they are stored with underscores.
const DefaultBitmapURL = "https://storage.googleapis.com/quickdraw_dataset/full/numpy_bitmap/"

// DownloadOptions control which categories Download fetches and from where.
// The zero value downloads every category from the public QuickDraw buckets.
type DownloadOptions struct {
	// Categories is an explicit canonical class list. When empty the remote
	// list at CategoriesURL is fetched instead.
	Categories []string

	// MaxCategories caps how many classes are downloaded, after sorting.
	// Zero or negative means no cap.
	MaxCategories int

	// BaseURL and CategoriesURL override the public QuickDraw endpoints,
	// mostly for tests.
	BaseURL       string
	CategoriesURL string
}

// Download ensures one "<name>.npy" file per requested category exists under
// dir, creating dir if needed. Files already present are skipped; everything
// else is fetched sequentially, and the first failure aborts the whole run
// (a partially written file may be left behind, rerunning re-fetches it...
// no resume bookkeeping is kept). It returns the canonical names it ensured,
// in sorted order.
func Download(dir string, opts DownloadOptions) ([]string, error) {
	names := opts.Categories
	if len(names) == 0 {
		var err error
		names, err = Categories(opts.CategoriesURL)
		if err != nil {
			return nil, err
		}
	}
	if opts.MaxCategories > 0 && len(names) > opts.MaxCategories {
		names = names[:opts.MaxCategories]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating dataset directory %s", dir)
	}

	base := opts.BaseURL
	if base == "" {
		base = DefaultBitmapURL
	}
	for _, name := range names {
		dest := filepath.Join(dir, name+".npy")
		if _, err := os.Stat(dest); err == nil {
			klog.V(1).Infof("%s already present, skipping", dest)
			continue
		}
		if err := fetchFile(base, name, dest); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// fetchFile downloads one category file. The remote name substitutes spaces
// back for the canonical underscores before path-escaping.
func fetchFile(base, name, dest string) error {
	remote := base + url.PathEscape(strings.ReplaceAll(name, "_", " ")) + ".npy"
	resp, err := http.Get(remote)
	if err != nil {
		return errors.Wrapf(err, "fetching %s", remote)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetching %s: %s", remote, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "creating %s", dest)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	klog.Infof("downloaded %s (%s)", dest, humanize.Bytes(uint64(n)))
	return nil
}
