// ABOUTME: Animation package decoding keyframe JSON into subject updates
// ABOUTME: Defines the Consumer contract and an in-memory Store
// Package animation decodes the JSON keyframes carried on the animation
// channel.
//
// A payload is an object keyed by subject name:
//
//	{
//	  "Face": {
//	    "Body":   [{"Name": "Root", "ParentName": "", "Location": [0,0,0], "Rotation": [0,0,0,1]}],
//	    "Facial": {"Names": ["JawOpen"], "Weights": [0.4]}
//	  },
//	  "Disconnect": {}
//	}
//
// Keys are processed in document order and "Disconnect" ends processing.
// Decoded layouts and frames are pushed to a Consumer.
package animation
