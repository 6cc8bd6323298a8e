package server

import (
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/chardev/chardev/internal/common/httpx"
)

// Version is the chardevd version and the version of its HTTP API.
const Version = "0.1.0"

// ClientVersionHeader carries the version of a client library. Requests
// without it are accepted.
const ClientVersionHeader = "X-Chardev-Client-Version"

// versionConstraint accepts clients from the same minor release line.
var versionConstraint *semver.Constraints

func init() {
	var err error
	versionConstraint, err = semver.NewConstraint("~" + Version)
	if err != nil {
		panic(err)
	}
}

// IsVersionCompatible reports whether a client at version can talk to this
// server. Invalid versions are incompatible.
func IsVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return versionConstraint.Check(v)
}

// checkClientVersion rejects clients that announce an incompatible version.
func checkClientVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(ClientVersionHeader); v != "" && !IsVersionCompatible(v) {
			httpx.ErrInvalidRequest("incompatible client version " + v + ", server is " + Version).Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
