package migration

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files returns the migrations shipped with the binary.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		// sql/ is part of the embed pattern, so Sub cannot fail.
		panic(err)
	}
	return sub
}
