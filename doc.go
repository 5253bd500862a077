// Package odb resolves git objects by hash from a repository on disk.
//
// An Engine owns a queue of operations processed by a pool of workers. A
// GetObject operation races one lookup per packfile against a lookup of the
// loose object, and completes with the first object found. Open packfiles,
// pack indexes, pack listings and loose object existence checks are cached
// for a short time, so repeated lookups do not touch the filesystem again.
//
// Objects are returned as streams that must be closed by the caller:
//
//	e, err := odb.NewEngine(osfs.New("/"), odb.Options{})
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	obj, err := e.GetObject(ctx, "/path/to/repo/.git", h)
//	if err != nil {
//		return err
//	}
//	defer obj.Close()
package odb
