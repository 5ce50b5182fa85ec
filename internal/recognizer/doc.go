// Package recognizer adapts OCR engines to the table engine. An Engine turns an image
// into positioned word fragments; a Recognizer applies table regions to it, mapping
// cropped results back to image coordinates or partitioning full-page results per
// region, and cleans the fragment text.
package recognizer
