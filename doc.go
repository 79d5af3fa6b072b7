// Package dcstore is a hierarchical, strongly-typed data store for
// microstructure data: containers hold attribute matrices, matrices hold
// typed arrays that all share the matrix's tuple count.
//
// # Quick Start
//
// Save and selectively load a store file:
//
//	ctx := context.Background()
//	_ = dcstore.Save(ctx, "scan.dcs", s)
//
//	tree, _ := dcstore.Scan(ctx, "scan.dcs")      // structure only, no data
//	_ = tree.SetSelected(maskPath, false)          // skip one array
//	loaded, _ := dcstore.Load(ctx, "scan.dcs", tree)
//
// Select by requirements instead of by hand:
//
//	pred, _ := proxy.CompileExpr(`level == "container" || kind == "Cell"`)
//	tree, _ := dcstore.Scan(ctx, "scan.dcs", dcstore.WithPredicate(pred))
//
// When the file changes on disk, carry the user's selection over:
//
//	tree, _ = dcstore.Reopen(ctx, "scan.dcs", tree)
//
// # Versioned Repositories
//
// A Repository keeps numbered saves in any blob store and moves a CURRENT
// pointer on every commit:
//
//	repo := dcstore.Local("./data")
//	v, _ := repo.Commit(ctx, s)
//
//	s3Store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("scans/"))
//	repo = dcstore.Remote(s3Store)
//
// # Packages
//
//   - datapath: container/matrix/array addresses
//   - array, store: typed arrays and the node graph
//   - proxy: metadata-only trees with selection flags
//   - persistence: the file format, scan and materialize
//   - rename: rename detection and propagation
//   - pipeline: steps with dry runs and rename propagation
//   - blobstore, catalog: where files live and which one is current
package dcstore
