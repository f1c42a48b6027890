// Package catalog provides a client for the tonearm catalog HTTP API.
//
// The catalog API is the metadata side of the music site: releases with
// their ordered tracks, the flat track listing used for shuffle-all, and
// the listen-reporting endpoint. This package is designed to be usable as
// a standalone SDK.
//
// Example usage:
//
//	import "github.com/tonearm/tonearm/pkg/catalog"
//
//	client, err := catalog.NewClient(catalog.Config{
//	    BaseURL: "https://music.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	release, err := client.GetRelease(ctx, 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(release.Title)
package catalog
