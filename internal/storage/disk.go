package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// sqliteSidecars are the files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"-wal", "-shm"}

// Artifacts names the on-disk outputs of a prepared corpus. Empty paths are not configured.
type Artifacts struct {
	Database      string
	Vocabulary    string
	Encoded       string
	QuestionIndex string
}

// Usage is the size in bytes of each artifact.
type Usage struct {
	Database      int64 `json:"database"`
	Vocabulary    int64 `json:"vocabulary"`
	Encoded       int64 `json:"encoded"`
	QuestionIndex int64 `json:"question_index"`
}

// Total sums every artifact.
func (u Usage) Total() int64 {
	return u.Database + u.Vocabulary + u.Encoded + u.QuestionIndex
}

// DiskUsage sizes every artifact. The database counts its WAL and shared-memory
// files; the badger store and question index are directories and are summed
// recursively. Artifacts that do not exist yet count as 0.
func DiskUsage(a Artifacts) (Usage, error) {
	var u Usage
	var err error
	if u.Database, err = pathSize(a.Database); err != nil {
		return u, err
	}
	if a.Database != "" {
		for _, suffix := range sqliteSidecars {
			n, err := pathSize(a.Database + suffix)
			if err != nil {
				return u, err
			}
			u.Database += n
		}
	}
	if u.Vocabulary, err = pathSize(a.Vocabulary); err != nil {
		return u, err
	}
	if u.Encoded, err = pathSize(a.Encoded); err != nil {
		return u, err
	}
	if u.QuestionIndex, err = pathSize(a.QuestionIndex); err != nil {
		return u, err
	}
	return u, nil
}

func pathSize(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
