package jira

// Quote exposes quote for tests.
var Quote = quote
