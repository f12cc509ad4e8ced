// Package language maps the free-form language names accepted in
// configuration ("简体中文", "English", "ja", "deu") onto ISO 639 codes and
// BCP 47 tags for the transcription and muxing tools.
package language
