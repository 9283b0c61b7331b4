// Package port implements host port availability checks for the
// wsgidock CLI.
//
// Publishing a service binds a host port to the container's listen
// port. The Scanner verifies OS-level availability via net.Listen()
// before any container is created, so a conflict fails fast with a
// clear diagnosis instead of Docker's bind error after the fact. When
// the user does not pin a host port, FindAvailablePort picks the first
// free one in the scan range.
package port
