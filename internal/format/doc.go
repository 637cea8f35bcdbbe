// Package format renders finished transcriptions as txt, srt, vtt, tsv or
// json and writes them into the results directory.
package format
