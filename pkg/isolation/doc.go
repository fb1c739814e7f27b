/*
Package isolation defines the agent's pluggable execution backend and
provides two implementations: ContainerdBackend, which launches each
executor as a containerd task in its own namespace, and Fake, an
in-memory double for tests that records every call and lets the test drive
executor lifecycle events on demand.

The agent core depends only on Backend and Callbacks; it is never aware
which implementation is wired in.
*/
package isolation
