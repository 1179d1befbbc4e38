// Package buildinfo carries version metadata stamped at link time:
//
//	-X 'github.com/m3rciful/dreambot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/dreambot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/dreambot/core/buildinfo.Date=2026-01-30T12:00:00Z'
package buildinfo

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)
