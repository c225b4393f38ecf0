// Package serialization saves and loads model parameters in the SafeTensors
// format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON object, tensor name -> {dtype, shape, data_offsets}]
//	  [Tensor data: raw little-endian F32 bytes, tensors in name order]
//
// An optional "__metadata__" entry in the header carries string key/value
// pairs. The writer records a SHA-256 of the data section there; the reader
// verifies it when present.
//
// Checkpoint builds on top of that: it stores a Chain's state dict together
// with the layer specs, a run identifier and the epoch, so a chain can be
// rebuilt from the file alone.
//
// Example usage:
//
//	ckpt := serialization.NewCheckpoint(chain, epoch)
//	if err := ckpt.Save("model.safetensors"); err != nil {
//	    log.Fatal(err)
//	}
//
//	loaded, _, err := serialization.LoadCheckpoint("model.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chain := loaded.Chain
package serialization
