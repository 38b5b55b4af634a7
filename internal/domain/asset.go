package domain

import "time"

// AssetKind tags a stored file with the stage that produced it. An alias
// keeps the constants assignable wherever plain strings flow.
type AssetKind = string

// Asset kinds produced by the pipeline. Kind is a free-form stage tag; these
// are the values the extraction stages write.
const (
	AssetKindUpload      = "upload"
	AssetKindWhiteBg     = "white_bg"
	AssetKindTransparent = "transparent"
)

// Asset is an immutable stored-file record. Rows are created once per stage
// output and never updated afterwards.
type Asset struct {
	ID           string
	OwnerType    string
	OwnerID      *string
	FileURL      string
	FileType     string
	FileSize     int64
	OriginalName string
	Kind         AssetKind
	JobID        *string
	CreatedAt    time.Time
}
