// Command surge is the CLI front end: a resumable, parallel byte-range
// HTTP downloader with no TUI, everything addressed through a SQLite
// resume store so `get`, `ls`, `status`, `pause`, `resume`, and `rm` can
// all act on a download independently of whichever process started it.
package main

func main() {
	Execute()
}
