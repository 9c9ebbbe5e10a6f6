// Package crawler defines the core types and capability interfaces shared by the
// keyword crawl engine: keywords, result candidates, accepted results, the
// PageFetcher and ResultSink collaborators, and the error taxonomy used across
// the frontier, dispatcher, classifier, and checkpoint subsystems.
package crawler
