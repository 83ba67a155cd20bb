package field

// The round constants, MDS matrix, S-box exponent, and full/partial round
// counts live inside github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2
// and are not reproduced here. ParamsVersion (poseidon.go) is the version
// tag this package is built against; bumping the gnark-crypto dependency to
// a release that changes those constants requires bumping ParamsVersion and
// treating every pool deployed against the old version as needing a fresh
// tree (the circuit and this package must agree byte-for-byte). No
// reference vector from an off-chain circuit implementation ships in this
// tree; scalar_test.go covers only this package's own internal consistency
// (Poseidon2/PoseidonN agreement, determinism), not equality against an
// external circuit output. Obtaining and pinning a genuine circuit-side
// vector is the one remaining step before ParamsVersion can be trusted
// across a circuit upgrade.
