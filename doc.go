// Package uhdr models raw pixel surfaces for an HDR/SDR image pipeline and
// drives an UltraHDR (JPEG/R) encoder session through a narrow codec boundary.
//
// Raw images come in three ownership variants sharing one layout: OwnedRawImage
// holds its own plane storage, BorrowedRawImage and MutRawImage are read-only and
// writable views into storage owned elsewhere. Plane extents are derived from
// the pixel format and dimensions by the plane layout resolver.
//
// An Encoder wraps exactly one Codec handle. Inputs and tuning parameters are
// forwarded to the codec one call at a time, each call reports its own status,
// and Encode produces a CompressedImage. The pure-Go codec lives in package jpegr.
package uhdr
