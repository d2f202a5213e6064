// Package mediatypes classifies directory entries for the indexer.
//
// A Classifier holds two extension allow-lists, one for videos and one for
// photos. Anything else, and any dot-file, classifies as KindIgnore:
//
//	c := mediatypes.Default()
//	switch c.Classify("IMG_0001.JPG") {
//	case mediatypes.KindPhoto:
//	    // index as photo
//	case mediatypes.KindVideo:
//	    // index as video
//	}
//
// The tables can be replaced at startup from a YAML file (MEDIA_TYPES_FILE)
// with LoadFile. The package has no dependency on the rest of the module so
// every layer can import it.
package mediatypes
