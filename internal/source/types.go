package source

// FileID identifies a loaded compilation-unit file.
type FileID uint32

// NoFileID marks the absence of a file.
const NoFileID FileID = 0

// IsValid reports whether the ID refers to a real file.
func (id FileID) IsValid() bool { return id != NoFileID }
