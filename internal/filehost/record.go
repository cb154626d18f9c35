package filehost

import (
	"path"
	"time"
)

// FileRecord is the persisted metadata for one stored file.
type FileRecord struct {
	ID           string    `json:"id"`
	StoredName   string    `json:"filename"`
	Directory    string    `json:"directory"`
	RelativePath string    `json:"path"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadDate"`
	Extension    string    `json:"type"`
}

// FileUpdate holds the fields to overwrite on a record. Nil fields are left untouched.
type FileUpdate struct {
	StoredName   *string
	Directory    *string
	RelativePath *string
	OriginalName *string
	Extension    *string
}

// Apply overwrites the non-nil fields of u onto r.
func (u FileUpdate) Apply(r *FileRecord) {
	if u.StoredName != nil {
		r.StoredName = *u.StoredName
	}
	if u.Directory != nil {
		r.Directory = *u.Directory
	}
	if u.RelativePath != nil {
		r.RelativePath = *u.RelativePath
	}
	if u.OriginalName != nil {
		r.OriginalName = *u.OriginalName
	}
	if u.Extension != nil {
		r.Extension = *u.Extension
	}
}

// ScanFilter narrows a metadata scan.
// A nil Directory means every directory; an empty string means the root only.
type ScanFilter struct {
	Directory    *string
	NameContains string
}

// JoinRelative builds the relative path of a stored file inside a directory.
func JoinRelative(directory, storedName string) string {
	if directory == "" {
		return storedName
	}
	return path.Join(directory, storedName)
}

// Stats is the global usage summary reported by the service.
type Stats struct {
	TotalFiles    int64
	TotalSize     int64
	DiskUsed      uint64
	DiskAvailable uint64
}
