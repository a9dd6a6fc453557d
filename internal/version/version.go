package version

import "fmt"

// Значения заполняются при сборке через -ldflags:
//
//	-X .../internal/version.version=v1.2.3
//	-X .../internal/version.commit=abc1234
//	-X .../internal/version.date=2026-08-31
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает commit сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// String — однострочное представление для логов и баннеров.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
