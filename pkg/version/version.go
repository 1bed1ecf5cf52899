// Copyright 2020 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package version

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Build information, set with -ldflags "-X".
var (
	ReleaseVersion = "None"
	GitHash        = "None"
	BuildTS        = "None"
)

var describeSuffix = regexp.MustCompile("-[0-9]+-g[0-9a-f]{7,}(-dev)?")

// removeVAndHash strips the leading "v", the git describe suffix and
// "-dirty" from a version.
func removeVAndHash(v string) string {
	v = describeSuffix.ReplaceAllLiteralString(v, "")
	v = strings.TrimSuffix(v, "-dirty")
	return strings.TrimPrefix(v, "v")
}

// ReleaseSemver returns ReleaseVersion as a semantic version, or "" if it
// was not set to one at build time.
func ReleaseSemver() string {
	v, err := semver.NewVersion(removeVAndHash(ReleaseVersion))
	if err != nil {
		return ""
	}
	return v.String()
}

// LogVersionInfo logs the build of the running binary.
func LogVersionInfo(component string) {
	log.Info("actor framework build",
		zap.String("component", component),
		zap.String("release-version", ReleaseVersion),
		zap.String("semver", ReleaseSemver()),
		zap.String("git-hash", GitHash),
		zap.String("build-ts", BuildTS),
		zap.String("go-version", runtime.Version()),
	)
}

// GetRawInfo returns the build information, one field per line.
func GetRawInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Release Version: %s\n", ReleaseVersion)
	if v := ReleaseSemver(); v != "" {
		fmt.Fprintf(&b, "Semver: %s\n", v)
	}
	fmt.Fprintf(&b, "Git Commit Hash: %s\n", GitHash)
	fmt.Fprintf(&b, "Build Time: %s\n", BuildTS)
	fmt.Fprintf(&b, "Go Version: %s\n", runtime.Version())
	return b.String()
}
