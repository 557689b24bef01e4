// Package npm queries npm-compatible registries.
//
// A registry serves one JSON document per package, the packument, at
// <base>/<escaped name>. Its "versions" object maps each published version
// to metadata whose dist.tarball field locates the archive:
//
//	base := integrations.NewClient(nil, nil)
//	registry := npm.NewClient(base, npm.DefaultRegistry)
//	doc, err := registry.Packument(ctx, "koa-ejs")
//	fmt.Println(doc.Versions["4.1.2"].Dist.Tarball)
//
// Only the fields the installer needs are decoded.
package npm
