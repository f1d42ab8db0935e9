package config

import (
	"github.com/fsnotify/fsnotify"
)

// WatchAndReload watches path for writes and calls Reload on each one,
// invoking onErr with any reload failure (it does not stop watching on
// error — a transient partial write shouldn't kill the watch). The
// returned watcher must be closed by the caller when done.
func WatchAndReload(path string, onErr func(error)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := Reload(path); err != nil {
						onErr(err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				onErr(err)
			}
		}
	}()
	return w, nil
}
