// Package media derives display sizes from uploaded item photos.
//
// Every original stored under a category folder has two JPEG derivatives
// next to it, named by a fixed suffix rule:
//
//	/Cards/17000-ab12cd.png
//	/Cards/17000-ab12cd_thumb.jpeg   (longest edge at most 480px)
//	/Cards/17000-ab12cd_medium.jpeg  (longest edge at most 1024px)
//
// Derivatives are a cache of the original and can be rebuilt at any time
// with Engine.Regenerate. The Engine renders with disintegration/imaging by
// default, or with libvips when the vips backend is selected.
package media
