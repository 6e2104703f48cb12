// Package quantization declares the built-in quantization pass kinds: the
// unified static/dynamic pass, the fixed-mode static and dynamic variants,
// and the matmul 4-bit weight quantizer. Each kind is a composition of
// shared parameter groups; variants differ only in which groups they merge
// and in what order.
package quantization
