/*
Copyright © 2026 the UnitOverlap authors.
This file is part of UnitOverlap.

UnitOverlap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

UnitOverlap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with UnitOverlap.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Download checks if the input is an existing local file. If it is not
// but it is an HTTP(S) URL or blob address, Download fetches it into a
// new temporary directory and returns the path to the downloaded file.
// For shapefiles, all associated files are downloaded and the path to the
// file with the ".shp" extension is returned. Any other path is returned
// unchanged so that opening it reports the problem.
//
// HTTP requests that fail are retried with exponential backoff until ctx
// is done. log, if not nil, receives the retry messages.
func Download(ctx context.Context, p string, log logrus.FieldLogger) (string, error) {
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		return p, nil
	}
	switch {
	case IsHTTP(p):
		return downloadHTTP(ctx, p, log)
	case IsBlob(p):
		return downloadBlob(ctx, p)
	default:
		return p, nil
	}
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file.
func downloadHTTP(ctx context.Context, url string, log logrus.FieldLogger) (string, error) {
	dir, err := ioutil.TempDir("", "unitoverlap")
	if err != nil {
		return "", fmt.Errorf("cloud: creating temporary download directory: %v", err)
	}
	fnames := expandShp(url)
	for _, fname := range fnames {
		dst := filepath.Join(dir, path.Base(fname))
		err := backoff.RetryNotify(
			func() error { return fetch(ctx, fname, dst) },
			backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
			func(err error, d time.Duration) {
				if log != nil {
					log.WithField("url", fname).Warnf("%v: retrying in %v", err, d)
				}
			},
		)
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, path.Base(fnames[0])), nil
}

// fetch copies the body of url into the file dst. Client errors are
// permanent; other failures may be retried.
func fetch(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("cloud: %v", err))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: downloading %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("cloud: downloading %s: %s", url, resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	w, err := os.Create(dst)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("cloud: creating file for download: %v", err))
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		w.Close()
		return fmt.Errorf("cloud: downloading %s: %v", url, err)
	}
	return w.Close()
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, p string) (string, error) {
	bucketName, key, err := SplitBlob(p)
	if err != nil {
		return "", err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return "", err
	}
	dir, err := ioutil.TempDir("", "unitoverlap")
	if err != nil {
		return "", fmt.Errorf("cloud: creating temporary download directory: %v", err)
	}
	keys := expandShp(key)
	for _, k := range keys {
		b, err := readBlob(ctx, bucket, k)
		if err != nil {
			return "", err
		}
		if err := ioutil.WriteFile(filepath.Join(dir, path.Base(k)), b, 0644); err != nil {
			return "", fmt.Errorf("cloud: saving download: %v", err)
		}
	}
	return filepath.Join(dir, path.Base(keys[0])), nil
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	if path.Ext(filename) != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
