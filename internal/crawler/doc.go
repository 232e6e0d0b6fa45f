// Package crawler holds the domain types, interfaces, and retry policy shared
// by the fetch, extraction, filtering, and storage stages of the SAM.gov
// opportunity pipeline.
package crawler
