package il2prx

// SPDX-FileCopyrightText: 2002 Phil Karn, KA9Q
// SPDX-FileCopyrightText: The Samoyed Authors

// Reed-Solomon codec over GF(2^8).
//
// The encoder, the table setup and the Berlekamp-Massey / Chien / Forney
// decoder follow Phil Karn's original routines, which he released under
// the GPL:
//
/* Copyright 2002 Phil Karn, KA9Q
 * May be used under the terms of the GNU General Public License (GPL)
 */

// Interesting related stuff:
// https://www.kernel.org/doc/html/v4.15/core-api/librs.html
// https://berthub.eu/articles/posts/reed-solomon-for-programmers/

const rsBlockSize = 255 // Block size always 255 for 8 bit symbols.

type rsCodec struct {
	mm      uint   // Bits per symbol.
	nn      int    // Symbols per block, (1<<mm)-1.
	alphaTo []byte // log lookup table
	indexOf []byte // Antilog lookup table
	genpoly []byte // Generator polynomial, index form.
	nroots  int    // Number of generator roots = number of parity symbols.
	fcr     int    // First consecutive root, index form.
	prim    int    // Primitive element, index form.
	iprim   int    // prim-th root of 1, index form.
}

// Reduce modulo nn without a divide.
func (rs *rsCodec) modnn(x int) int {
	for x >= rs.nn {
		x -= rs.nn
		x = (x >> rs.mm) + (x & rs.nn)
	}
	return x
}

/* Initialize a Reed-Solomon codec
 *   symsize = symbol size, bits (1-8) - always 8 for this application.
 *   gfpoly = Field generator polynomial coefficients
 *   fcr = first root of RS code generator polynomial, index form
 *   prim = primitive element to generate polynomial roots
 *   nroots = RS code generator polynomial degree (number of roots)
 *
 * Returns nil for impossible parameters.
 */

func newRSCodec(symsize uint, gfpoly int, fcr int, prim int, nroots int) *rsCodec {
	if symsize > 8 {
		return nil
	}
	if fcr >= (1<<symsize) || prim == 0 || prim >= (1<<symsize) || nroots >= (1<<symsize) {
		return nil
	}

	var rs = &rsCodec{
		mm:     symsize,
		nn:     (1 << symsize) - 1,
		fcr:    fcr,
		prim:   prim,
		nroots: nroots,
	}

	rs.alphaTo = make([]byte, rs.nn+1)
	rs.indexOf = make([]byte, rs.nn+1)

	// Generate Galois field lookup tables
	rs.indexOf[0] = byte(rs.nn) // log(zero) = -inf (A0)
	rs.alphaTo[rs.nn] = 0       // alpha**-inf = 0
	var sr = 1
	for i := 0; i < rs.nn; i++ {
		rs.indexOf[sr] = byte(i)
		rs.alphaTo[i] = byte(sr)
		sr <<= 1
		if sr&(1<<symsize) != 0 {
			sr ^= gfpoly
		}
		sr &= rs.nn
	}
	if sr != 1 {
		// field generator polynomial is not primitive!
		return nil
	}

	// Find prim-th root of 1, used in decoding
	var iprim = 1
	for iprim%prim != 0 {
		iprim += rs.nn
	}
	rs.iprim = iprim / prim

	// Form RS code generator polynomial from its roots
	rs.genpoly = make([]byte, nroots+1)
	rs.genpoly[0] = 1
	for i, root := 0, fcr*prim; i < nroots; i, root = i+1, root+prim {
		rs.genpoly[i+1] = 1

		// Multiply genpoly[] by  @**(root + x)
		for j := i; j > 0; j-- {
			if rs.genpoly[j] != 0 {
				rs.genpoly[j] = rs.genpoly[j-1] ^ rs.alphaTo[rs.modnn(int(rs.indexOf[rs.genpoly[j]])+root)]
			} else {
				rs.genpoly[j] = rs.genpoly[j-1]
			}
		}
		// genpoly[0] can never be zero
		rs.genpoly[0] = rs.alphaTo[rs.modnn(int(rs.indexOf[rs.genpoly[0]])+root)]
	}
	// convert genpoly[] to index form for quicker encoding
	for i := 0; i <= nroots; i++ {
		rs.genpoly[i] = rs.indexOf[rs.genpoly[i]]
	}

	return rs
}

// encode computes nroots parity symbols for data.  A shortened block is
// just the tail of a full one with leading zeros, and leading zeros leave
// the shift register alone, so the padding never needs to be fed in.
func (rs *rsCodec) encode(data []byte) []byte {
	var a0 = rs.nn
	var bb = make([]byte, rs.nroots)

	for _, d := range data {
		var feedback = int(rs.indexOf[d^bb[0]])

		if feedback != a0 { // feedback term is non-zero
			for j := 1; j < rs.nroots; j++ {
				bb[j] ^= rs.alphaTo[rs.modnn(feedback+int(rs.genpoly[rs.nroots-j]))]
			}
		}

		// Shift
		copy(bb, bb[1:])

		if feedback != a0 {
			bb[rs.nroots-1] = rs.alphaTo[rs.modnn(feedback+int(rs.genpoly[0]))]
		} else {
			bb[rs.nroots-1] = 0
		}
	}

	return bb
}

// syndromes evaluates a full nn symbol block at the roots of the generator.
// Result is in polynomial form; all zero means a valid codeword.
func (rs *rsCodec) syndromes(data []byte) []int {
	var s = make([]int, rs.nroots)
	for i := range s {
		s[i] = int(data[0])
	}

	for j := 1; j < rs.nn; j++ {
		for i := 0; i < rs.nroots; i++ {
			if s[i] == 0 {
				s[i] = int(data[j])
			} else {
				s[i] = int(data[j]) ^ int(rs.alphaTo[rs.modnn(int(rs.indexOf[s[i]])+(rs.fcr+i)*rs.prim)])
			}
		}
	}
	return s
}

/*-------------------------------------------------------------
 *
 * Name:	decode
 *
 * Purpose:	Correct errors in place in a full nn symbol block.
 *
 * Returns:	Number of symbols corrected and their positions,
 *		or -1 if the block is uncorrectable.
 *
 * Description:	No erasures.  Berlekamp-Massey finds the error locator,
 *		Chien search finds its roots, Forney computes the error
 *		values.
 *
 *--------------------------------------------------------------*/

func (rs *rsCodec) decode(data []byte) (int, []int) {
	var nn = rs.nn
	var nroots = rs.nroots
	var a0 = nn

	var s = rs.syndromes(data)

	// Convert syndromes to index form, checking for nonzero condition
	var synError = 0
	for i := range s {
		synError |= s[i]
		s[i] = int(rs.indexOf[s[i]])
	}
	if synError == 0 {
		// data[] is a codeword, nothing to correct.
		return 0, nil
	}

	var lambda = make([]int, nroots+1) // Error locator polynomial, poly form.
	var b = make([]int, nroots+1)
	var t = make([]int, nroots+1)
	lambda[0] = 1

	for i := 0; i <= nroots; i++ {
		b[i] = int(rs.indexOf[lambda[i]])
	}

	// Berlekamp-Massey algorithm to determine error locator polynomial
	var el = 0
	for r := 1; r <= nroots; r++ {
		// Compute discrepancy at the r-th step in poly-form
		var discr = 0
		for i := 0; i < r; i++ {
			if lambda[i] != 0 && s[r-i-1] != a0 {
				discr ^= int(rs.alphaTo[rs.modnn(int(rs.indexOf[lambda[i]])+s[r-i-1])])
			}
		}
		discr = int(rs.indexOf[discr]) // Index form

		if discr == a0 {
			// B(x) <-- x*B(x)
			copy(b[1:], b[:nroots])
			b[0] = a0
			continue
		}

		// T(x) <-- lambda(x) - discr*x*b(x)
		t[0] = lambda[0]
		for i := 0; i < nroots; i++ {
			if b[i] != a0 {
				t[i+1] = lambda[i+1] ^ int(rs.alphaTo[rs.modnn(discr+b[i])])
			} else {
				t[i+1] = lambda[i+1]
			}
		}
		if 2*el <= r-1 {
			el = r - el
			// B(x) <-- inv(discr) * lambda(x)
			for i := 0; i <= nroots; i++ {
				if lambda[i] == 0 {
					b[i] = a0
				} else {
					b[i] = rs.modnn(int(rs.indexOf[lambda[i]]) - discr + nn)
				}
			}
		} else {
			// B(x) <-- x*B(x)
			copy(b[1:], b[:nroots])
			b[0] = a0
		}
		copy(lambda, t)
	}

	// Convert lambda to index form and compute deg(lambda(x))
	var degLambda = 0
	for i := 0; i <= nroots; i++ {
		lambda[i] = int(rs.indexOf[lambda[i]])
		if lambda[i] != a0 {
			degLambda = i
		}
	}

	// More errors than the code can handle.
	if 2*degLambda > nroots {
		return -1, nil
	}

	// Find roots of the error locator polynomial by Chien search
	var reg = make([]int, nroots+1)
	copy(reg[1:], lambda[1:])
	var root = make([]int, 0, nroots)
	var loc = make([]int, 0, nroots)

	for i, k := 1, rs.iprim-1; i <= nn; i, k = i+1, rs.modnn(k+rs.iprim) {
		var q = 1 // lambda[0] is always 0
		for j := degLambda; j > 0; j-- {
			if reg[j] != a0 {
				reg[j] = rs.modnn(reg[j] + j)
				q ^= int(rs.alphaTo[reg[j]])
			}
		}
		if q != 0 {
			continue // Not a root
		}
		root = append(root, i)
		loc = append(loc, k)
		if len(root) == degLambda {
			break
		}
	}
	if degLambda != len(root) {
		// deg(lambda) unequal to number of roots => uncorrectable
		return -1, nil
	}

	// Compute error evaluator poly omega(x) = s(x)*lambda(x) (modulo
	// x**nroots). in index form. Also find deg(omega).
	var omega = make([]int, nroots+1)
	var degOmega = 0
	for i := 0; i < nroots; i++ {
		var tmp = 0
		for j := min(degLambda, i); j >= 0; j-- {
			if s[i-j] != a0 && lambda[j] != a0 {
				tmp ^= int(rs.alphaTo[rs.modnn(s[i-j]+lambda[j])])
			}
		}
		if tmp != 0 {
			degOmega = i
		}
		omega[i] = int(rs.indexOf[tmp])
	}
	omega[nroots] = a0

	// Compute error values in poly-form. num1 = omega(inv(X(l))), num2 =
	// inv(X(l))**(fcr-1) and den = lambda_pr(inv(X(l))) all in poly-form
	for j := len(root) - 1; j >= 0; j-- {
		var num1 = 0
		for i := degOmega; i >= 0; i-- {
			if omega[i] != a0 {
				num1 ^= int(rs.alphaTo[rs.modnn(omega[i]+i*root[j])])
			}
		}
		var num2 = int(rs.alphaTo[rs.modnn(root[j]*(rs.fcr-1)+nn)])
		var den = 0

		// lambda[i+1] for i even is the formal derivative lambda_pr of lambda[i]
		for i := min(degLambda, nroots-1) &^ 1; i >= 0; i -= 2 {
			if lambda[i+1] != a0 {
				den ^= int(rs.alphaTo[rs.modnn(lambda[i+1]+i*root[j])])
			}
		}
		if den == 0 {
			return -1, nil
		}
		// Apply error to data
		if num1 != 0 {
			data[loc[j]] ^= rs.alphaTo[rs.modnn(int(rs.indexOf[num1])+int(rs.indexOf[num2])+nn-int(rs.indexOf[den]))]
		}
	}

	return len(root), loc
}
