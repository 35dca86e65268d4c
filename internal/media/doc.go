// Package media defines the file and result types shared by every stage of a
// conversion run.
package media
