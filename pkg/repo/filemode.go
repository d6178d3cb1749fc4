package repo

import (
	"io/fs"
	"os"

	"github.com/gritvcs/grit/pkg/object"
)

// modeFromFileInfo maps an on-disk file mode to the canonical tree mode
// string. Anything with an execute bit becomes 100755, everything else
// 100644.
func modeFromFileInfo(info fs.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

// filePermFromMode maps a canonical tree mode string to the permission
// bits used when materializing the file.
func filePermFromMode(mode string) os.FileMode {
	if mode == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
