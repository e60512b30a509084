package internal

// Version is the current version of roomchat
// This should be updated with each release
const Version = "0.3.0"
