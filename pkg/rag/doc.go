// Package rag answers questions from a folder of documents.
//
// A [Pipeline] wires the offline and online halves together:
//
//	┌───────────── Rebuild ─────────────┐   ┌──────────────── Ask ────────────────┐
//	│ find → load → split → embed/graph │──▶│ embed question → retrieve → compose │
//	│            → persist snapshot     │   │    (similarity or diversity)        │
//	└───────────────────────────────────┘   └─────────────────────────────────────┘
//
// # Usage
//
//	cfg := config.NewConfig()
//	cfg.Paths.DocumentRoot = "./my_docs"
//
//	p, err := rag.New(rag.WithConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	if _, err := p.Rebuild(ctx); err != nil {
//	    return err
//	}
//	ans, err := p.Ask(ctx, "What color is the sky?")
//
// Embedder and generator default to the providers named in the config and
// can be replaced with [WithEmbedder] and [WithGenerator].
//
// # Thread Safety
//
// A Pipeline is safe for concurrent use. Queries see either the old or the
// new index while a rebuild is in progress, never a mix. Several pipelines
// may live in one process.
package rag
