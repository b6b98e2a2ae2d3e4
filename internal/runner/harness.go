package runner

// harness is the ES module program that evaluates an artifact inside the
// host runtime. It reads the artifact URL from standard input, imports it
// and writes one JSON envelope to file descriptor 3:
//
//	{"ok":true,"value":<tagged value>}
//	{"ok":false,"error":"<message>"}
//
// The tagged value encoding is the one package jsvalue decodes.
const harness = `
import { readFileSync, writeSync, closeSync } from "node:fs";

const RESULT_FD = 3;

function encode(value, stack) {
  switch (typeof value) {
    case "undefined":
      return { $t: "undefined" };
    case "boolean":
    case "string":
      return value;
    case "number":
      return Number.isFinite(value) ? value : null;
    case "bigint":
      return { $t: "bigint", v: value.toString() };
    case "symbol":
      return value.toString();
    case "function":
      return { $t: "function", name: value.name };
  }
  if (value === null) {
    return null;
  }
  if (value instanceof Date) {
    return Number.isNaN(value.getTime()) ? null : { $t: "date", v: value.toISOString() };
  }
  if (stack.includes(value)) {
    return { $t: "circular" };
  }
  stack.push(value);
  try {
    if (Array.isArray(value)) {
      return { $t: "array", items: Array.from(value, (item) => encode(item, stack)) };
    }
    const tag = Object.prototype.toString.call(value) === "[object Module]" ? "module" : "object";
    const keys = [];
    for (const key of Object.keys(value)) {
      let item;
      try {
        item = value[key];
      } catch {
        item = undefined;
      }
      keys.push([key, encode(item, stack)]);
    }
    return { $t: tag, keys };
  } finally {
    stack.pop();
  }
}

function report(envelope) {
  let payload = Buffer.from(JSON.stringify(envelope), "utf8");
  while (payload.length > 0) {
    payload = payload.subarray(writeSync(RESULT_FD, payload));
  }
  closeSync(RESULT_FD);
}

const url = readFileSync(0, "utf8").trim();
let envelope;
try {
  const namespace = await import(url);
  envelope = { ok: true, value: encode(namespace, []) };
} catch (error) {
  envelope = { ok: false, error: error instanceof Error ? (error.stack ?? error.message) : String(error) };
}
report(envelope);
process.exit(envelope.ok ? 0 : 1);
`
